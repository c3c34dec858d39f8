package sqlinline

const QSelectIntegrationToken = `--sql 81ad0fc0-43a8-4958-ad2d-4c308c2fb683
select token
from integration_tokens
where provider = $1
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql e499f81e-77d4-4c3c-a1e0-1cd3439dfe43
insert into integration_tokens(provider, token, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
