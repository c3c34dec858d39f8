package sqlinline

// QWorkerClaimJob atomically claims the oldest submitted job and flips it to
// RUNNING. SKIP LOCKED keeps concurrent workers off the same row.
const QWorkerClaimJob = `--sql 3f9f77bd-efb8-4c1e-a9c2-9d5960a2e87b
with next_job as (
    select id
    from jobs
    where status = 'SUBMITTED'
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update jobs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_job)
    returning id, job_type, input_json, dev_mode, locale, api_version
)
select * from claimed;
`
